// Package plugins registers every builtin actor with an entity registry.
// Actors shipped outside this module call entity.RegisterFactory on the
// same registry before the configuration is built.
package plugins

import (
	stderrors "errors"

	"github.com/15532th/avtdl/action/exec"
	"github.com/15532th/avtdl/action/file"
	"github.com/15532th/avtdl/action/relay"
	"github.com/15532th/avtdl/entity"
	pkgerrors "github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/filter/event"
	"github.com/15532th/avtdl/filter/format"
	"github.com/15532th/avtdl/filter/match"
	"github.com/15532th/avtdl/filter/rectype"
	"github.com/15532th/avtdl/monitor/static"
)

// Register adds all builtin actor factories to the registry.
func Register(registry *entity.Registry) error {
	if registry == nil {
		return pkgerrors.WrapFatal(
			stderrors.New("registry cannot be nil"),
			"Plugins", "Register", "registry validation")
	}

	// Monitors
	if err := static.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "Plugins", "Register", "static monitor registration")
	}

	// Filters
	if err := match.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "Plugins", "Register", "match filter registration")
	}

	if err := rectype.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "Plugins", "Register", "type filter registration")
	}

	if err := event.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "Plugins", "Register", "event filter registration")
	}

	if err := format.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "Plugins", "Register", "format filter registration")
	}

	// Actions
	if err := file.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "Plugins", "Register", "file action registration")
	}

	if err := exec.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "Plugins", "Register", "exec action registration")
	}

	if err := relay.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "Plugins", "Register", "relay action registration")
	}

	return nil
}

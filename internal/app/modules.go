package app

import (
	"github.com/vk/classkit/internal/registry"
	"github.com/vk/classkit/modules/env_vars"
	"github.com/vk/classkit/modules/http_client"
	"github.com/vk/classkit/modules/print"
)

// coreModules is the definitive list of the method modules compiled into
// the classkit binary.
var coreModules = []registry.Module{
	&env_vars.Module{},
	&print.Module{},
	&http_client.Module{},
}

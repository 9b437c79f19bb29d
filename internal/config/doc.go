// Package config reads loader configuration files. The same settings can be
// written as HCL, YAML or TOML; the file extension picks the format. Every
// format is decoded into File and converted to a validated loader.Config.
//
// An HCL file looks like:
//
//	loader {
//	  enabled            = true
//	  mode               = "async"
//	  disable_caching    = true
//	  script_chain_delay = "5ms"
//	  paths = {
//	    App = "app"
//	    Ext = "https://cdn.example.com/ext/src"
//	  }
//	}
//
//	manifest {
//	  class "App.view.Main" {
//	    requires = ["App.model.User"]
//	  }
//	}
package config

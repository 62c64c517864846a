package constant

import "os"

// <NodeDir>/                    (e.g., /home/user/.piet)
// └── config/
//	└── pietd_config.json
// └── data/
//	└── piet.db
// └── exports/
//	└── export<ms>.piet.json

const (
	NodeDir = ".piet"

	ConfigSubdir   = "config"
	ConfigFileName = "pietd_config.json"

	DataSubdir    = "data"
	ExportsSubdir = "exports"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir

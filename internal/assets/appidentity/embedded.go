package appidentityassets

import _ "embed"

// YAML is the embedded copy of `.fulmen/app.yaml`. The binary is dropped into
// hook directories and cron jobs where no repository checkout exists.
//
//go:embed app.yaml
var YAML []byte

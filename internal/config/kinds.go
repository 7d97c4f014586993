package config

import (
	_ "github.com/any-hub/unzip-hub/internal/repokind/hosted"
	_ "github.com/any-hub/unzip-hub/internal/repokind/proxy"
)

package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/gotox/internal/config"
	"github.com/vk/gotox/internal/hclconf"
	"github.com/vk/gotox/internal/iniconf"
)

// LoaderFor picks the configuration loader matching the file's extension.
func LoaderFor(path string) (config.Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg":
		return iniconf.NewLoader(), nil
	case ".hcl":
		return hclconf.NewLoader(), nil
	}
	return nil, fmt.Errorf("unsupported configuration format %q (want .ini or .hcl)", filepath.Ext(path))
}

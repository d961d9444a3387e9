package config

import (
	"fmt"

	"github.com/paulschiretz/pgl-vault/pkg/util"
)

// LinkEngine selects how the checkout is populated.
type LinkEngine int

const (
	// CpioLinkEngine delegates to the external pass-through copy tool.
	CpioLinkEngine LinkEngine = iota
	// NativeLinkEngine links and copies in-process with a worker pool.
	NativeLinkEngine
)

var linkEngineNames = map[LinkEngine]string{
	CpioLinkEngine:   "cpio",
	NativeLinkEngine: "native",
}

var linkEngineValues = util.InvertMap(linkEngineNames)

func (e LinkEngine) String() string {
	if name, ok := linkEngineNames[e]; ok {
		return name
	}
	return fmt.Sprintf("LinkEngine(%d)", int(e))
}

// ParseLinkEngine converts a flag value into a LinkEngine.
func ParseLinkEngine(name string) (LinkEngine, error) {
	if e, ok := linkEngineValues[name]; ok {
		return e, nil
	}
	return 0, fmt.Errorf("unknown link engine %q (want cpio or native)", name)
}

package setarchive

import (
	"fmt"

	"github.com/paulschiretz/pgl-vault/pkg/util"
)

// Format represents the archive format for set exports.
type Format string

const (
	TarGz  Format = "tar.gz"
	TarZst Format = "tar.zst"
)

var formatToString = map[Format]string{
	TarGz:  "tar.gz",
	TarZst: "tar.zst",
}

var stringToFormat map[string]Format

func init() {
	stringToFormat = util.InvertMap(formatToString)
}

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_export_format(%s)", string(f))
}

func ParseFormat(s string) (Format, error) {
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid export format: %q. Must be 'tar.gz' or 'tar.zst'", s)
}

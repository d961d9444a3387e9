package flagparse

import (
	"testing"

	"github.com/paulschiretz/pgl-vault/pkg/config"
	"github.com/paulschiretz/pgl-vault/pkg/setarchive"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    Command
		wantErr bool
	}{
		{in: "backup", want: Backup},
		{in: "init", want: Init},
		{in: "log", want: Log},
		{in: "version", want: Version},
		{in: "restore", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCommand(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCommand(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseBackup(t *testing.T) {
	cmd, flagMap, err := Parse([]string{
		"backup",
		"-conf", "/etc/pgl-vault/media.bset",
		"-repo", "/backups/media.fossil",
		"-link-engine", "native",
		"-clear-checkout=false",
		"-export-format", "tar.zst",
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd != Backup {
		t.Fatalf("command = %v, want backup", cmd)
	}

	if got := flagMap["conf"]; got != "/etc/pgl-vault/media.bset" {
		t.Errorf("conf = %v", got)
	}
	if got := flagMap["repo"]; got != "/backups/media.fossil" {
		t.Errorf("repo = %v", got)
	}
	if got := flagMap["link-engine"]; got != config.NativeLinkEngine {
		t.Errorf("link-engine = %v, want native", got)
	}
	if got := flagMap["clear-checkout"]; got != false {
		t.Errorf("clear-checkout = %v, want false", got)
	}
	if got := flagMap["export-format"]; got != setarchive.TarZst {
		t.Errorf("export-format = %v, want tar.zst", got)
	}
}

func TestParseOnlySetFlags(t *testing.T) {
	_, flagMap, err := Parse([]string{"backup", "-repo", "/backups/media.fossil"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(flagMap) != 1 {
		t.Errorf("flag map should only hold explicitly set flags, got %v", flagMap)
	}
}

func TestParseInvalidLinkEngine(t *testing.T) {
	_, _, err := Parse([]string{"backup", "-link-engine", "robocopy"})
	if err == nil {
		t.Fatal("expected error for unknown link engine")
	}
}

func TestParseInvalidExportFormat(t *testing.T) {
	_, _, err := Parse([]string{"backup", "-export-format", "zip"})
	if err == nil {
		t.Fatal("expected error for unknown export format")
	}
}

func TestParseVersion(t *testing.T) {
	cmd, flagMap, err := Parse([]string{"version"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd != Version {
		t.Errorf("command = %v, want version", cmd)
	}
	if flagMap != nil {
		t.Errorf("version takes no flags, got %v", flagMap)
	}
}

func TestParseNoArgs(t *testing.T) {
	cmd, _, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd != None {
		t.Errorf("command = %v, want none", cmd)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	if _, _, err := Parse([]string{"prune"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

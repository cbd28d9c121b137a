package bot

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text  string
		cmd   string
		args  []string
		isCmd bool
	}{
		{"!слоты", "слоты", nil, true},
		{"  .ПЛЕНКИ  ", "пленки", nil, true},
		{"/start@slots_bot", "start", nil, true},
		{"!выдать 42 100", "выдать", []string{"42", "100"}, true},
		{"/login", "login", nil, true},
		{"привет", "", nil, false},
		{"!", "", nil, false},
		{"", "", nil, false},
	}

	p := NewCommandParser()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args, ok := p.ParseCommand(tt.text)
			if cmd != tt.cmd || ok != tt.isCmd || !reflect.DeepEqual(args, tt.args) {
				t.Errorf("ParseCommand(%q) = %q, %v, %v; ожидалось %q, %v, %v",
					tt.text, cmd, args, ok, tt.cmd, tt.args, tt.isCmd)
			}
		})
	}
}

func TestFormatHelp(t *testing.T) {
	if got := formatHelp(50); !strings.Contains(got, "ставка 50 пленок") {
		t.Errorf("formatHelp: %q", got)
	}
}

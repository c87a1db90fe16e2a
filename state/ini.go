package state

import (
	"bufio"
	"io"
	"strings"
)

// iniFile is a parsed INI file: section name to key-value pairs. Keys before
// any section header land in the "" section.
type iniFile struct {
	sections map[string]map[string]string
}

func parseINI(r io.Reader) (*iniFile, error) {
	ini := &iniFile{sections: make(map[string]map[string]string)}
	current := ""
	ini.sections[current] = make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Whole-line comments only; ';' and '#' inside a value are data.
		if strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if _, exists := ini.sections[current]; !exists {
				ini.sections[current] = make(map[string]string)
			}
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		ini.sections[current][key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ini, nil
}

func (f *iniFile) section(name string) (map[string]string, bool) {
	s, ok := f.sections[name]
	return s, ok
}

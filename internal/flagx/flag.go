// Package flagx contains argument helpers that let several components parse
// their own flags from one command line, plus the key=value parsing used by
// the admin console.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs returns only the flags listed in allowedFlags, together with
// their values. Both "-c conf.json" and "--config=conf.json" forms are kept;
// a following token that starts with '-' is never taken as a value.
// The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigPath extracts the JSON config file path given with -c or -config.
// When both are present the last one wins; an empty string means no file.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "Path to config file")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return path
}

// KeyValues turns tokens of the form key=value into a map. Tokens without
// '=' are returned separately, in order, as positional arguments.
func KeyValues(tokens []string) (map[string]string, []string) {
	kv := make(map[string]string)
	var rest []string

	for _, tok := range tokens {
		k, v, ok := strings.Cut(tok, "=")
		if !ok || k == "" {
			rest = append(rest, tok)
			continue
		}
		kv[strings.ToLower(k)] = v
	}

	return kv, rest
}

// Package flagx holds helpers for parsing only a subset of command-line
// flags, so that several components (config file lookup, server flags,
// cobra subcommands) can read os.Args without tripping over each other.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the arguments from args that belong to allowedFlags,
// together with their values.
//
// Supported formats:
//
//	-c conf.json         flag and value as separate arguments
//	--config=conf.json   flag and value joined with '='
//
// A token following an allowed flag is taken as its value unless it starts
// with '-'. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
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

// FilterBoolArgs returns the boolean flags from args that belong to
// allowedFlags. Unlike FilterArgs it never takes the following token as a
// value, so "-k serve" keeps "serve" out of the result; an explicit value
// must be joined with '=' ("-k=false").
func FilterBoolArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0)
	for _, arg := range args {
		name := strings.SplitN(arg, "=", 2)[0]
		if _, ok := allowed[name]; ok {
			filtered = append(filtered, arg)
		}
	}
	return filtered
}

// ConfigFileFlag returns the JSON config path given with -c or -config,
// or an empty string when neither is present. The last occurrence wins.
func ConfigFileFlag() string {
	var path string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config", "--config"})

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(args)

	return path
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

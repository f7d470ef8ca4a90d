package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/booklend/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   database DSN
//	-s string   session signing secret
//	-t int      session validity, minutes
//	-l string   log level
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-k          mark session cookies Secure (use -k=false to turn off)
//
// os.Args is filtered with flagx.FilterArgs first, so subcommand names and
// flags owned by other components are ignored.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-l", "-u", "-p", "-b", "-g", "-e"})
	args = append(args, flagx.FilterBoolArgs(os.Args[1:], []string{"-k"})...)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	sessionValidity := fs.Int("t", 0, "session validity (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 covers bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.BoolVar(&config.SecureCookies, "k", config.SecureCookies, "secure session cookies")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// only an explicit -t replaces the validity loaded so far
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.SessionValidity = time.Duration(*sessionValidity) * time.Minute
		}
	})
}

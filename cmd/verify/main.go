// Command verify checks a notarized TLS presentation file against a trusted
// notary public key.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"tlsn-verifier/inspect"
	"tlsn-verifier/notary"
	"tlsn-verifier/proofverifier"
	"tlsn-verifier/shared"
)

func main() {
	var opts proofverifier.Options
	flag.StringVar(&opts.PresentationPath, "presentation", "", "hex presentation or envelope JSON file")
	flag.StringVar(&opts.NotaryKeyPath, "key", "", "notary public key PEM file")
	flag.StringVar(&opts.MatchesPath, "matches", "", "optional JSON file with response matches")
	flag.BoolVar(&opts.JSON, "json", false, "print the result as JSON")
	flag.BoolVar(&opts.Full, "full", false, "do not collapse long redactions")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if opts.PresentationPath == "" || opts.NotaryKeyPath == "" {
		fmt.Fprintln(os.Stderr, "usage: verify -presentation <file> -key <notary.pem> [-matches <file>] [-json] [-full]")
		os.Exit(2)
	}

	logger, err := shared.NewLogger(shared.LoggerConfig{
		ServiceName: "verify",
		Development: *verbose,
		Quiet:       !*verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	notary.SetLogger(logger)
	inspect.SetLogger(logger.Logger)
	opts.Logger = logger
	opts.Out = os.Stdout

	if _, err := proofverifier.Validate(opts); err != nil {
		logger.Error("Verification failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "[Verifier] Verification failed ❌: %v\n", err)
		os.Exit(1)
	}
}

// dreip-verify is the offline verification tool: given a question dump
// archive (CBOR or JSON, as served by the dump endpoint), it re-verifies
// every proof and every homomorphic identity and reports the verdict.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/dreip-node/verify"
)

func main() {
	dumpPath := flag.StringP("dump", "f", "", "path to the question dump file (CBOR or JSON)")
	flag.Parse()

	if *dumpPath == "" {
		fmt.Fprintln(os.Stderr, "usage: dreip-verify --dump <file>")
		os.Exit(2)
	}

	data, err := os.ReadFile(*dumpPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read dump: %v\n", err)
		os.Exit(2)
	}
	dump, err := verify.DecodeDump(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot decode dump: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("question %s of election %s: %d audited, %d confirmed ballots\n",
		dump.QuestionID.String(), dump.ElectionID.String(),
		len(dump.AuditedBallots), len(dump.ConfirmedBallots))
	if err := verify.VerifyQuestion(dump); err != nil {
		fmt.Fprintf(os.Stderr, "verification FAILED: %v\n", err)
		os.Exit(1)
	}
	if dump.Closed() {
		fmt.Println("verification OK (ballots, proofs and published totals)")
	} else {
		fmt.Println("verification OK (ballots and proofs; election still open)")
	}
}

// Command signchallenge signs a login nonce with a local private key so the
// /auth/verify flow can be exercised from a shell.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/GoPolymarket/paperbot/internal/manager"
	"github.com/GoPolymarket/paperbot/internal/signer"
)

func main() {
	key := flag.String("key", os.Getenv("PAPERBOT_PRIVATE_KEY"), "hex private key (defaults to $PAPERBOT_PRIVATE_KEY)")
	nonce := flag.String("nonce", "", "nonce returned by POST /auth/nonce")
	flag.Parse()

	if *nonce == "" {
		flag.Usage()
		os.Exit(2)
	}

	s, err := signer.NewSigner(*key)
	if err != nil {
		log.Fatalf("Failed to load key: %v", err)
	}

	message := manager.ChallengePrefix + *nonce
	sig, err := s.SignMessage(message)
	if err != nil {
		log.Fatalf("Failed to sign: %v", err)
	}

	fmt.Printf("address:   %s\n", s.Address().Hex())
	fmt.Printf("message:   %s\n", message)
	fmt.Printf("signature: %s\n", sig)
}

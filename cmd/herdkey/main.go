// herdkey inspects and generates Nostr signing keys for the messaging
// service. It prints the public identity for a key in hex and npub
// form, optionally writing an npub QR code for profile setup.
//
// Usage:
//
//	herdkey -key <hex|nsec>          print the derived public identity
//	herdkey -gen                     generate a new keypair
//	herdkey -key <hex|nsec> -qr f.png  also write an npub QR code
//
// Secrets are only printed with -show-secret.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	qrcode "github.com/skip2/go-qrcode"

	"cyberherd-messaging/internal/keys"
	"cyberherd-messaging/internal/nips"
)

func main() {
	var (
		keyInput   = flag.String("key", "", "signing key as 64 hex chars or nsec (reads stdin when empty)")
		generate   = flag.Bool("gen", false, "generate a new keypair instead of reading one")
		qrPath     = flag.String("qr", "", "write an npub QR code PNG to this path")
		qrSize     = flag.Int("qr-size", 256, "QR code size in pixels")
		showSecret = flag.Bool("show-secret", false, "print the secret in nsec and hex form")
	)
	flag.Parse()

	var material *keys.SigningMaterial
	var err error

	if *generate {
		material, err = generateKey()
		if err != nil {
			fatal("generate key: %v", err)
		}
	} else {
		raw := *keyInput
		if raw == "" {
			raw, err = readStdin()
			if err != nil {
				fatal("read key from stdin: %v", err)
			}
		}
		material, err = keys.Normalize(raw)
		if err != nil {
			// The error never echoes the input
			fatal("%v", err)
		}
	}

	npub, err := material.Npub()
	if err != nil {
		fatal("encode npub: %v", err)
	}

	fmt.Printf("pubkey  %s\n", material.PublicKeyHex())
	fmt.Printf("npub    %s\n", npub)

	if *showSecret || *generate {
		secretHex := material.SecretHex()
		raw, err := hex.DecodeString(secretHex)
		if err != nil {
			fatal("decode secret: %v", err)
		}
		nsec, err := nips.EncodeSecret(raw)
		if err != nil {
			fatal("encode nsec: %v", err)
		}
		fmt.Printf("nsec    %s\n", nsec)
		if *showSecret {
			fmt.Printf("secret  %s\n", secretHex)
		}
	}

	if *qrPath != "" {
		if err := qrcode.WriteFile("nostr:"+npub, qrcode.Medium, *qrSize, *qrPath); err != nil {
			fatal("write QR code: %v", err)
		}
		fmt.Printf("qr      %s\n", *qrPath)
	}
}

func generateKey() (*keys.SigningMaterial, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return keys.Normalize(fmt.Sprintf("%x", priv.Serialize()))
}

func readStdin() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "herdkey: "+format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tech-arch1tect/tokenchain"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/keys"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "keygen" {
		if err := keygen(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	application, err := tokenchain.New()
	if err != nil {
		log.Fatal(err)
	}

	if err := application.Run(); err != nil {
		log.Fatal(err)
	}
}

// keygen writes a signing keypair to the configured key paths.
func keygen(args []string) error {
	var env struct {
		Auth config.AuthConfig `envPrefix:"AUTH_"`
	}
	if err := config.LoadConfig(&env); err != nil {
		return err
	}
	defaults := env.Auth

	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	privatePath := fs.String("private", defaults.PrivateKeyPath, "private key output path")
	publicPath := fs.String("public", defaults.PublicKeyPath, "public key output path")
	bits := fs.Int("bits", 3072, "RSA key size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := keys.Generate(*privatePath, *publicPath, *bits); err != nil {
		return err
	}

	fmt.Printf("wrote %s and %s\n", *privatePath, *publicPath)
	return nil
}

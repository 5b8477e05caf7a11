package main

import (
	"flag"
	"log"

	"github.com/danmuck/tensorwire/internal/config"
)

func main() {
	output := flag.String("output", "peer.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "peer.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if _, err := config.LoadPeerConfig(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated peer config at %s", *input)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote peer config template to %s", *output)
}

// Command token mints an operator bearer token for the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/geolens/engine/internal/config"
	"github.com/geolens/engine/internal/pkg/jwt"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	operator := flag.String("operator", "", "Operator name embedded in the token")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwt.SetSecret(secret)
	} else {
		fmt.Fprintln(os.Stderr, "warning: jwt_secret is empty, signing with the built-in default secret")
	}

	token, err := jwt.Sign(strings.TrimSpace(*operator), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println(token)
}

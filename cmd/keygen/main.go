// Command keygen mints an RSA keypair for RS256 token signing and prints it
// in the env format the server reads.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

func main() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey),
	})

	fmt.Println("SECURITY_ALGORITHM=RS256")
	fmt.Printf("SECURITY_SECRET_KEY=\"%s\"\n", privPEM)
	fmt.Printf("SECURITY_PUBLIC_KEY=\"%s\"\n", pubPEM)
}

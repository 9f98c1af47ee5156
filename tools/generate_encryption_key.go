package main

import (
	"fmt"
	"log"

	"github.com/jhilgenberg/go-e-report/crypto"
)

func main() {
	fmt.Println("=== Settings Encryption Key Generator ===")
	fmt.Println()

	encodedKey, err := crypto.GenerateEncryptionKey()
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}

	fmt.Println("Your new encryption key has been generated:")
	fmt.Println()
	fmt.Println(encodedKey)
	fmt.Println()
	fmt.Println("Add this to your .env file:")
	fmt.Printf("SETTINGS_ENCRYPTION_KEY=%s\n", encodedKey)
	fmt.Println()
	fmt.Println("IMPORTANT:")
	fmt.Println("- Keep this key secure and never commit it to version control")
	fmt.Println("- The same key must be used to read the stored cloud API key")
	fmt.Println("- If you lose this key, re-enter the cloud API key in the settings")
	fmt.Println()
}

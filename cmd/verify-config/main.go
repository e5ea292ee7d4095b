package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/EasterCompany/dex-voice-rating/config"
)

// ANSI color codes for formatted output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

func main() {
	fmt.Printf("%s--- Voice Rating Config Verifier ---%s\n", ColorBlue, ColorReset)

	path, err := config.Path(config.FileName)
	if err != nil {
		fmt.Printf("%s[FATAL]%s Could not determine config path: %v\n", ColorRed, ColorReset, err)
		os.Exit(1)
	}

	fmt.Printf("\nVerifying %s'%s'%s...\n", ColorBlue, path, ColorReset)
	if !verifyConfigFile(path) {
		fmt.Println("\n--------------------------")
		fmt.Printf("%s❌ Some issues were found in the configuration.%s\n", ColorRed, ColorReset)
		os.Exit(1)
	}
	fmt.Println("\n--------------------------")
	fmt.Printf("%s✅ Configuration seems correct.%s\n", ColorGreen, ColorReset)
}

func verifyConfigFile(path string) bool {
	// 1. Check file existence
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("  %s[FAIL]%s File not found or not readable: %v\n", ColorRed, ColorReset, err)
		return false
	}
	fmt.Printf("  %s[OK]%s File exists and is readable.\n", ColorGreen, ColorReset)

	// 2. Check for valid JSON and unknown fields
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()

	cfg := config.Default()
	if err := decoder.Decode(cfg); err != nil {
		fmt.Printf("  %s[FAIL]%s JSON is invalid or contains unexpected fields: %v\n", ColorRed, ColorReset, err)
		return false
	}
	fmt.Printf("  %s[OK]%s JSON is valid and all fields are recognized.\n", ColorGreen, ColorReset)

	// 3. Check values
	if err := cfg.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("  %s[FAIL]%s %s\n", ColorRed, ColorReset, line)
		}
		return false
	}
	fmt.Printf("  %s[OK]%s All values are valid.\n", ColorGreen, ColorReset)

	// 4. Warn about sections that were left out entirely
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		fmt.Printf("  %s[FAIL]%s %v\n", ColorRed, ColorReset, err)
		return false
	}
	missing := []string{}
	typ := reflect.TypeOf(*cfg)
	for i := 0; i < typ.NumField(); i++ {
		tag := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
		if _, ok := raw[tag]; !ok {
			missing = append(missing, tag)
		}
	}
	if len(missing) > 0 {
		fmt.Printf("  %s[WARN]%s These sections are absent and use defaults: %v\n", ColorYellow, ColorReset, missing)
	}
	return true
}

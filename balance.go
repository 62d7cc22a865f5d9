package cryptofolio

import "github.com/shopspring/decimal"

// Credential holds the exchange API key pair.
//
// It is only kept in process memory: its printed and json forms are redacted.
type Credential struct {
	APIKey    string
	SecretKey string
}

// Validate returns a *ConfigurationError when a field is missing.
func (c Credential) Validate() error {
	switch {
	case c.APIKey == "" && c.SecretKey == "":
		return &ConfigurationError{Msg: "exchange API key and secret key are missing"}
	case c.APIKey == "":
		return &ConfigurationError{Msg: "exchange API key is missing"}
	case c.SecretKey == "":
		return &ConfigurationError{Msg: "exchange secret key is missing"}
	}
	return nil
}

func (c Credential) String() string {
	if c.APIKey == "" {
		return "Credential{}"
	}
	return "Credential{****}"
}

func (c Credential) GoString() string             { return c.String() }
func (c Credential) MarshalJSON() ([]byte, error) { return []byte(`"****"`), nil }

// Balance is the holding of one asset on the exchange.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Total returns Free + Locked.
func (b Balance) Total() decimal.Decimal { return b.Free.Add(b.Locked) }

package domain

// ProductRecord is an entry of the product catalog.
type ProductRecord struct {
	Name        string   `json:"name" toml:"name"`
	URL         string   `json:"url" toml:"url"`
	Price       string   `json:"price" toml:"price"`
	Category    string   `json:"category" toml:"category"`
	Description string   `json:"description" toml:"description"`
	Ingredients []string `json:"ingredients,omitempty" toml:"ingredients"`
	Properties  []string `json:"properties,omitempty" toml:"properties"`
}

// Bundle is a routine kit recommended as a complete regimen.
type Bundle struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

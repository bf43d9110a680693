package tools

// MawsuahParams are the arguments models pass to search_mawsuah.
type MawsuahParams struct {
	Query string `json:"query" jsonschema:"description=Topic or subject matter to search for within the Encyclopedia of Islamic Jurisprudence. Make this as specific as possible."`
}

// MawsuahSearch retrieves passages from the Encyclopedia of Islamic
// Jurisprudence (Mawsuah Fiqhiyyah) through the Kalimat API.
type MawsuahSearch struct {
	kalimatSearch
}

// NewMawsuahSearch creates the search_mawsuah tool backed by the given client.
func NewMawsuahSearch(client *Client) *MawsuahSearch {
	return &MawsuahSearch{newKalimatSearch(client, searchSpec{
		name:        "search_mawsuah",
		description: "Search and retrieve relevant passages from the Encyclopedia of Islamic Jurisprudence based on a specific topic. Returns multiple passages when applicable.",
		path:        "/search/mawsuah",
		label:       "Passage",
		sourceType:  "mawsuah",
		corpus:      "Encyclopedia of Islamic Jurisprudence",
	}, &MawsuahParams{})}
}

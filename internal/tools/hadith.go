package tools

// HadithParams are the arguments models pass to search_hadith.
type HadithParams struct {
	Query string `json:"query" jsonschema:"description=Topic or subject matter to search for within the hadith collections. Make this as specific as possible."`
}

// HadithSearch retrieves hadiths relevant to a topic through the Kalimat API.
type HadithSearch struct {
	kalimatSearch
}

// NewHadithSearch creates the search_hadith tool backed by the given client.
func NewHadithSearch(client *Client) *HadithSearch {
	return &HadithSearch{newKalimatSearch(client, searchSpec{
		name:        "search_hadith",
		description: "Search and retrieve relevant hadiths based on a specific topic. Returns multiple hadiths when applicable.",
		path:        "/search/hadith",
		label:       "Hadith",
		sourceType:  "hadith",
		corpus:      "hadith collections",
	}, &HadithParams{})}
}

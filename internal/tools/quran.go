package tools

// QuranParams are the arguments models pass to search_quran.
type QuranParams struct {
	Query string `json:"query" jsonschema:"description=Topic or subject matter to search for within the Holy Quran. Make this as specific as possible. Do not include the word quran in the request. Returns results both as tool results and as references for citations."`
}

// QuranSearch retrieves ayahs relevant to a topic through the Kalimat API.
type QuranSearch struct {
	kalimatSearch
}

// NewQuranSearch creates the search_quran tool backed by the given client.
func NewQuranSearch(client *Client) *QuranSearch {
	return &QuranSearch{newKalimatSearch(client, searchSpec{
		name:        "search_quran",
		description: "Search and retrieve relevant ayahs based on a specific topic. Returns multiple ayahs when applicable.",
		path:        "/search",
		label:       "Ayah",
		sourceType:  "quran",
		corpus:      "Quran",
	}, &QuranParams{})}
}

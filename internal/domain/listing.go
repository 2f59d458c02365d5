package domain

import "time"

const crawlListingPrefix = "Crawl Job: "

type Listing struct {
	ID        string
	Name      string
	Origin    string // file path, URL or domain
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Record struct {
	ID             string
	ListingID      string
	Name           string
	Addresses      []string
	PhoneNumbers   []string
	EmailAddresses []string
	Description    *string
	Website        *string
	CreatedAt      time.Time
}

// ExtractedEntry is a validated generator entry that has not been stored yet.
type ExtractedEntry struct {
	Name         string   `json:"name"`
	Website      *string  `json:"website"`
	Emails       []string `json:"emails"`
	Addresses    []string `json:"addresses"`
	PhoneNumbers []string `json:"phoneNumbers"`
	Description  *string  `json:"description"`
}

// ListingNameForDomain correlates a job with its listing without a foreign key.
func ListingNameForDomain(domain string) string {
	return crawlListingPrefix + domain
}

// DedupeByName keeps the last entry for each name, ordered by first appearance.
func DedupeByName(entries []ExtractedEntry) []ExtractedEntry {
	idx := make(map[string]int, len(entries))
	out := make([]ExtractedEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := idx[e.Name]; ok {
			out[i] = e
			continue
		}
		idx[e.Name] = len(out)
		out = append(out, e)
	}
	return out
}

func (e ExtractedEntry) ToRecord(listingID string) Record {
	return Record{
		ListingID:      listingID,
		Name:           e.Name,
		Addresses:      nonNil(e.Addresses),
		PhoneNumbers:   nonNil(e.PhoneNumbers),
		EmailAddresses: nonNil(e.Emails),
		Description:    e.Description,
		Website:        e.Website,
	}
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

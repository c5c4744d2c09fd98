package index

// Posting records that a fragment contains a term and how often.
type Posting struct {
	FragmentID int
	Frequency  int
}

// PostingList is ordered by ascending FragmentID.
type PostingList []Posting

// TermEntry pairs a term with its postings.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// FragmentIDs returns the ids in the list, ascending.
func (pl PostingList) FragmentIDs() []int {
	ids := make([]int, len(pl))
	for i, p := range pl {
		ids[i] = p.FragmentID
	}
	return ids
}

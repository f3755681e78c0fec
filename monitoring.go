package docdb

type CollectionStats struct {
	Docs int

	DataSize  int
	DataAlloc int
}

// Stats returns storage statistics of a collection. Backends without page
// accounting only fill in Docs.
func (tx *Tx) Stats(coll string) CollectionStats {
	b := tx.bucket(coll)
	if b == nil {
		return CollectionStats{}
	}
	bs := b.Stats()
	return CollectionStats{
		Docs:      bs.KeyN,
		DataSize:  int(bs.LeafInuse),
		DataAlloc: int(bs.TotalAlloc()),
	}
}

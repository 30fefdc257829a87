package riverbank

// OriginSealer protects origin addresses before they are written to the store.
type OriginSealer interface {
	Seal(origin string) (string, error)
}

// PlainOrigins stores origin addresses as-is.
type PlainOrigins struct{}

func (PlainOrigins) Seal(origin string) (string, error) { return origin, nil }

package ports

// Random supplies the bytes behind session IDs.
type Random interface {
	Read(b []byte) (n int, err error)
}

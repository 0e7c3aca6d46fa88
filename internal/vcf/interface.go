package vcf

// VariantParser yields the data records of a VCF in file order.
type VariantParser interface {
	Next() (*Variant, error) // nil, nil once the input is exhausted
	LineNumber() int
	Close() error
}

var _ VariantParser = (*Parser)(nil)

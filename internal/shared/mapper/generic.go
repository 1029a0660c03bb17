// Package mapper converts between domain values and their storage or wire shapes.
package mapper

// Mapper pairs the two conversion directions of a domain type D and its
// persistence model M.
type Mapper[D any, M any] struct {
	toModel  func(D) M
	toDomain func(M) D
}

func New[D any, M any](toModel func(D) M, toDomain func(M) D) *Mapper[D, M] {
	return &Mapper[D, M]{
		toModel:  toModel,
		toDomain: toDomain,
	}
}

func (m *Mapper[D, M]) ToModel(entity D) M {
	return m.toModel(entity)
}

func (m *Mapper[D, M]) ToDomain(model M) D {
	return m.toDomain(model)
}

func (m *Mapper[D, M]) ToDomainList(models []M) []D {
	return MapSlice(models, m.toDomain)
}

// MapSlice applies mapFunc to each element. Returns nil if items is nil.
func MapSlice[T any, R any](items []T, mapFunc func(T) R) []R {
	if items == nil {
		return nil
	}

	result := make([]R, 0, len(items))
	for _, item := range items {
		result = append(result, mapFunc(item))
	}
	return result
}

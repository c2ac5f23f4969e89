package refresh

import "testing"

func TestMemoryStoreContract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		return NewMemoryStore()
	})
}

package storage

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// Batch collects writes that a Database applies atomically.
type Batch struct {
	ops []batchOp
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), delete: true})
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ops)
}

func (b *Batch) Reset() {
	b.ops = b.ops[:0]
}

// Replay calls fn for every queued operation in insertion order.
func (b *Batch) Replay(fn func(key, value []byte, del bool)) {
	for _, op := range b.ops {
		fn(op.key, op.value, op.delete)
	}
}

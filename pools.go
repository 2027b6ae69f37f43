package pkstore

import "sync"

var keyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

func releaseKeyBytes(b []byte) {
	keyBytesPool.Put(b[:0])
}

var valueBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

func releaseValueBytes(b []byte) {
	valueBytesPool.Put(b[:0])
}

//go:build linux && cgo

package ipcring

/*
#include <stdint.h>

static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// sfence orders prior stores into a grant region ahead of handing the
// grant id to the driver side of the ring; required so the driver
// never observes a grant before the bytes it names.
func sfence() {
	C.sfence_impl()
}

// mfence is issued after WaitCompletion has read and marked seen every
// available completion-queue entry, ordering those reads and the
// head update ahead of whatever the caller does next.
func mfence() {
	C.mfence_impl()
}

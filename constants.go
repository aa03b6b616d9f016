package ndcc

import "github.com/ndcc/ndcc/internal/constants"

// Public re-exports of the tunables governing table and pool sizing.
const (
	DefaultNrNdev     = constants.DefaultNrNdev
	MinSendQ          = constants.MinSendQ
	MinRecvQ          = constants.MinRecvQ
	DefaultNReqSpares = constants.DefaultNReqSpares
	IOVMax            = constants.IOVMax
	HWAddrMax         = constants.HWAddrMax
	LabelMax          = constants.LabelMax
	MaxSendQDepth     = constants.MaxSendQDepth
)

// NrNreq returns the descriptor pool capacity cfg implies: two
// reserved slots per queue per table entry, plus the shared spare
// pool.
func NrNreq(cfg Config) int {
	return constants.NrNreq(cfg.NrNdev, cfg.NReqSpares)
}

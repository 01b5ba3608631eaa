package codec

import (
	"github.com/streamcoder/divans/command"
	"github.com/streamcoder/divans/probability"
)

// bookkeeper holds the cross-command adaptive state the driver
// threads through every command: the command-type selector CDF, the
// packed last-8-produced-bytes word used to pick literal contexts,
// and the most recent block-switch observations.
type bookkeeper struct {
	commandType *probability.AdaptiveCDF16

	last8Literals   uint64
	commandCount    uint64
	decodeByteCount uint32

	lastCopyDistance  uint32
	literalBlockType  uint8
	literalStride     uint8
	commandBlockType  uint8
	distanceBlockType uint8
}

func newBookkeeper() *bookkeeper {
	return &bookkeeper{commandType: probability.NewAdaptiveCDF16()}
}

func (bk *bookkeeper) obsCopyState()    {}
func (bk *bookkeeper) obsDictState()    {}
func (bk *bookkeeper) obsLiteralState() {}

func (bk *bookkeeper) obsDistance(cc *command.CopyCommand) {
	bk.lastCopyDistance = cc.Distance
}

func (bk *bookkeeper) obsBtypeLiteral(blockType, stride uint8) {
	bk.literalBlockType = blockType
	bk.literalStride = stride
}

func (bk *bookkeeper) obsBtypeCommand(blockType uint8) {
	bk.commandBlockType = blockType
}

func (bk *bookkeeper) obsBtypeDistance(blockType uint8) {
	bk.distanceBlockType = blockType
}

// setLast8 repacks the recoder's last-8-bytes snapshot into the
// shifted-byte word literal context lookups index into.
func (bk *bookkeeper) setLast8(snapshot [8]byte) {
	var packed uint64
	for _, b := range snapshot {
		packed = (packed << 8) | uint64(b)
	}
	bk.last8Literals = packed
}

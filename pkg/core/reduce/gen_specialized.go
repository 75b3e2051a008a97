/***** File generated by ./internal/cmd/reduce_generator. Don't edit it directly. *****/

package reduce

import (
	"github.com/gomlx/warpreduce/pkg/core/simt"
)

func init() {
	registerGroupReduce[Vec1](Max, GroupReduceMax1)
	registerBlockReduce[Vec1](Max, BlockReduceMax1)
	registerBlockAllReduce[Vec1](Max, BlockAllReduceMax1)
	registerGroupReduce[Vec2](Max, GroupReduceMax2)
	registerBlockReduce[Vec2](Max, BlockReduceMax2)
	registerBlockAllReduce[Vec2](Max, BlockAllReduceMax2)
	registerGroupReduce[Vec4](Max, GroupReduceMax4)
	registerBlockReduce[Vec4](Max, BlockReduceMax4)
	registerBlockAllReduce[Vec4](Max, BlockAllReduceMax4)
	registerGroupReduce[Vec1](Sum, GroupReduceSum1)
	registerBlockReduce[Vec1](Sum, BlockReduceSum1)
	registerBlockAllReduce[Vec1](Sum, BlockAllReduceSum1)
	registerGroupReduce[Vec2](Sum, GroupReduceSum2)
	registerBlockReduce[Vec2](Sum, BlockReduceSum2)
	registerBlockAllReduce[Vec2](Sum, BlockAllReduceSum2)
	registerGroupReduce[Vec4](Sum, GroupReduceSum4)
	registerBlockReduce[Vec4](Sum, BlockReduceSum4)
	registerBlockAllReduce[Vec4](Sum, BlockAllReduceSum4)
}

// groupRoundMax1 is one butterfly round of GroupReduceMax1.
func groupRoundMax1(regs *[simt.GroupSize]Vec1, laneMask int) {
	partner := simt.ShuffleXor(regs, laneMask)
	for lane := range regs {
		regs[lane][0] = max(regs[lane][0], partner[lane][0])
	}
}

// GroupReduceMax1 is GroupReduce[MaxOp, Vec1] specialized.
func GroupReduceMax1(regs *[simt.GroupSize]Vec1) {
	groupRoundMax1(regs, 16)
	groupRoundMax1(regs, 8)
	groupRoundMax1(regs, 4)
	groupRoundMax1(regs, 2)
	groupRoundMax1(regs, 1)
}

// BlockReduceMax1 is BlockReduce[MaxOp, Vec1] specialized.
func BlockReduceMax1(g *simt.Group, regs *[simt.GroupSize]Vec1, staging *Staging[Vec1]) {
	GroupReduceMax1(regs)
	slots := staging.slots
	groupID := g.ID()
	slots[0*simt.GroupSize+groupID] = regs[0][0]
	g.Sync()
	numGroups := g.NumGroups()
	for lane := range regs {
		if g.LaneIndex(lane) < numGroups {
			regs[lane] = Vec1{slots[0*simt.GroupSize+lane]}
		} else {
			regs[lane] = Vec1{NegSentinel}
		}
	}
	GroupReduceMax1(regs)
}

// BlockAllReduceMax1 is BlockAllReduce[MaxOp, Vec1] specialized.
func BlockAllReduceMax1(g *simt.Group, regs *[simt.GroupSize]Vec1, staging *Staging[Vec1]) {
	BlockReduceMax1(g, regs, staging)
	broadcast := staging.slots[1*simt.GroupSize:]
	if g.IsFirst() {
		broadcast[0] = regs[0][0]
	}
	g.Sync()
	value := Vec1{broadcast[0]}
	for lane := range regs {
		regs[lane] = value
	}
}

// groupRoundMax2 is one butterfly round of GroupReduceMax2.
func groupRoundMax2(regs *[simt.GroupSize]Vec2, laneMask int) {
	partner := simt.ShuffleXor(regs, laneMask)
	for lane := range regs {
		regs[lane][0] = max(regs[lane][0], partner[lane][0])
		regs[lane][1] = max(regs[lane][1], partner[lane][1])
	}
}

// GroupReduceMax2 is GroupReduce[MaxOp, Vec2] specialized.
func GroupReduceMax2(regs *[simt.GroupSize]Vec2) {
	groupRoundMax2(regs, 16)
	groupRoundMax2(regs, 8)
	groupRoundMax2(regs, 4)
	groupRoundMax2(regs, 2)
	groupRoundMax2(regs, 1)
}

// BlockReduceMax2 is BlockReduce[MaxOp, Vec2] specialized.
func BlockReduceMax2(g *simt.Group, regs *[simt.GroupSize]Vec2, staging *Staging[Vec2]) {
	GroupReduceMax2(regs)
	slots := staging.slots
	groupID := g.ID()
	slots[0*simt.GroupSize+groupID] = regs[0][0]
	slots[1*simt.GroupSize+groupID] = regs[0][1]
	g.Sync()
	numGroups := g.NumGroups()
	for lane := range regs {
		if g.LaneIndex(lane) < numGroups {
			regs[lane] = Vec2{slots[0*simt.GroupSize+lane], slots[1*simt.GroupSize+lane]}
		} else {
			regs[lane] = Vec2{NegSentinel, NegSentinel}
		}
	}
	GroupReduceMax2(regs)
}

// BlockAllReduceMax2 is BlockAllReduce[MaxOp, Vec2] specialized.
func BlockAllReduceMax2(g *simt.Group, regs *[simt.GroupSize]Vec2, staging *Staging[Vec2]) {
	BlockReduceMax2(g, regs, staging)
	broadcast := staging.slots[2*simt.GroupSize:]
	if g.IsFirst() {
		broadcast[0] = regs[0][0]
		broadcast[1] = regs[0][1]
	}
	g.Sync()
	value := Vec2{broadcast[0], broadcast[1]}
	for lane := range regs {
		regs[lane] = value
	}
}

// groupRoundMax4 is one butterfly round of GroupReduceMax4.
func groupRoundMax4(regs *[simt.GroupSize]Vec4, laneMask int) {
	partner := simt.ShuffleXor(regs, laneMask)
	for lane := range regs {
		regs[lane][0] = max(regs[lane][0], partner[lane][0])
		regs[lane][1] = max(regs[lane][1], partner[lane][1])
		regs[lane][2] = max(regs[lane][2], partner[lane][2])
		regs[lane][3] = max(regs[lane][3], partner[lane][3])
	}
}

// GroupReduceMax4 is GroupReduce[MaxOp, Vec4] specialized.
func GroupReduceMax4(regs *[simt.GroupSize]Vec4) {
	groupRoundMax4(regs, 16)
	groupRoundMax4(regs, 8)
	groupRoundMax4(regs, 4)
	groupRoundMax4(regs, 2)
	groupRoundMax4(regs, 1)
}

// BlockReduceMax4 is BlockReduce[MaxOp, Vec4] specialized.
func BlockReduceMax4(g *simt.Group, regs *[simt.GroupSize]Vec4, staging *Staging[Vec4]) {
	GroupReduceMax4(regs)
	slots := staging.slots
	groupID := g.ID()
	slots[0*simt.GroupSize+groupID] = regs[0][0]
	slots[1*simt.GroupSize+groupID] = regs[0][1]
	slots[2*simt.GroupSize+groupID] = regs[0][2]
	slots[3*simt.GroupSize+groupID] = regs[0][3]
	g.Sync()
	numGroups := g.NumGroups()
	for lane := range regs {
		if g.LaneIndex(lane) < numGroups {
			regs[lane] = Vec4{slots[0*simt.GroupSize+lane], slots[1*simt.GroupSize+lane], slots[2*simt.GroupSize+lane], slots[3*simt.GroupSize+lane]}
		} else {
			regs[lane] = Vec4{NegSentinel, NegSentinel, NegSentinel, NegSentinel}
		}
	}
	GroupReduceMax4(regs)
}

// BlockAllReduceMax4 is BlockAllReduce[MaxOp, Vec4] specialized.
func BlockAllReduceMax4(g *simt.Group, regs *[simt.GroupSize]Vec4, staging *Staging[Vec4]) {
	BlockReduceMax4(g, regs, staging)
	broadcast := staging.slots[4*simt.GroupSize:]
	if g.IsFirst() {
		broadcast[0] = regs[0][0]
		broadcast[1] = regs[0][1]
		broadcast[2] = regs[0][2]
		broadcast[3] = regs[0][3]
	}
	g.Sync()
	value := Vec4{broadcast[0], broadcast[1], broadcast[2], broadcast[3]}
	for lane := range regs {
		regs[lane] = value
	}
}

// groupRoundSum1 is one butterfly round of GroupReduceSum1.
func groupRoundSum1(regs *[simt.GroupSize]Vec1, laneMask int) {
	partner := simt.ShuffleXor(regs, laneMask)
	for lane := range regs {
		regs[lane][0] += partner[lane][0]
	}
}

// GroupReduceSum1 is GroupReduce[SumOp, Vec1] specialized.
func GroupReduceSum1(regs *[simt.GroupSize]Vec1) {
	groupRoundSum1(regs, 16)
	groupRoundSum1(regs, 8)
	groupRoundSum1(regs, 4)
	groupRoundSum1(regs, 2)
	groupRoundSum1(regs, 1)
}

// BlockReduceSum1 is BlockReduce[SumOp, Vec1] specialized.
func BlockReduceSum1(g *simt.Group, regs *[simt.GroupSize]Vec1, staging *Staging[Vec1]) {
	GroupReduceSum1(regs)
	slots := staging.slots
	groupID := g.ID()
	slots[0*simt.GroupSize+groupID] = regs[0][0]
	g.Sync()
	numGroups := g.NumGroups()
	for lane := range regs {
		if g.LaneIndex(lane) < numGroups {
			regs[lane] = Vec1{slots[0*simt.GroupSize+lane]}
		} else {
			regs[lane] = Vec1{0}
		}
	}
	GroupReduceSum1(regs)
}

// BlockAllReduceSum1 is BlockAllReduce[SumOp, Vec1] specialized.
func BlockAllReduceSum1(g *simt.Group, regs *[simt.GroupSize]Vec1, staging *Staging[Vec1]) {
	BlockReduceSum1(g, regs, staging)
	broadcast := staging.slots[1*simt.GroupSize:]
	if g.IsFirst() {
		broadcast[0] = regs[0][0]
	}
	g.Sync()
	value := Vec1{broadcast[0]}
	for lane := range regs {
		regs[lane] = value
	}
}

// groupRoundSum2 is one butterfly round of GroupReduceSum2.
func groupRoundSum2(regs *[simt.GroupSize]Vec2, laneMask int) {
	partner := simt.ShuffleXor(regs, laneMask)
	for lane := range regs {
		regs[lane][0] += partner[lane][0]
		regs[lane][1] += partner[lane][1]
	}
}

// GroupReduceSum2 is GroupReduce[SumOp, Vec2] specialized.
func GroupReduceSum2(regs *[simt.GroupSize]Vec2) {
	groupRoundSum2(regs, 16)
	groupRoundSum2(regs, 8)
	groupRoundSum2(regs, 4)
	groupRoundSum2(regs, 2)
	groupRoundSum2(regs, 1)
}

// BlockReduceSum2 is BlockReduce[SumOp, Vec2] specialized.
func BlockReduceSum2(g *simt.Group, regs *[simt.GroupSize]Vec2, staging *Staging[Vec2]) {
	GroupReduceSum2(regs)
	slots := staging.slots
	groupID := g.ID()
	slots[0*simt.GroupSize+groupID] = regs[0][0]
	slots[1*simt.GroupSize+groupID] = regs[0][1]
	g.Sync()
	numGroups := g.NumGroups()
	for lane := range regs {
		if g.LaneIndex(lane) < numGroups {
			regs[lane] = Vec2{slots[0*simt.GroupSize+lane], slots[1*simt.GroupSize+lane]}
		} else {
			regs[lane] = Vec2{0, 0}
		}
	}
	GroupReduceSum2(regs)
}

// BlockAllReduceSum2 is BlockAllReduce[SumOp, Vec2] specialized.
func BlockAllReduceSum2(g *simt.Group, regs *[simt.GroupSize]Vec2, staging *Staging[Vec2]) {
	BlockReduceSum2(g, regs, staging)
	broadcast := staging.slots[2*simt.GroupSize:]
	if g.IsFirst() {
		broadcast[0] = regs[0][0]
		broadcast[1] = regs[0][1]
	}
	g.Sync()
	value := Vec2{broadcast[0], broadcast[1]}
	for lane := range regs {
		regs[lane] = value
	}
}

// groupRoundSum4 is one butterfly round of GroupReduceSum4.
func groupRoundSum4(regs *[simt.GroupSize]Vec4, laneMask int) {
	partner := simt.ShuffleXor(regs, laneMask)
	for lane := range regs {
		regs[lane][0] += partner[lane][0]
		regs[lane][1] += partner[lane][1]
		regs[lane][2] += partner[lane][2]
		regs[lane][3] += partner[lane][3]
	}
}

// GroupReduceSum4 is GroupReduce[SumOp, Vec4] specialized.
func GroupReduceSum4(regs *[simt.GroupSize]Vec4) {
	groupRoundSum4(regs, 16)
	groupRoundSum4(regs, 8)
	groupRoundSum4(regs, 4)
	groupRoundSum4(regs, 2)
	groupRoundSum4(regs, 1)
}

// BlockReduceSum4 is BlockReduce[SumOp, Vec4] specialized.
func BlockReduceSum4(g *simt.Group, regs *[simt.GroupSize]Vec4, staging *Staging[Vec4]) {
	GroupReduceSum4(regs)
	slots := staging.slots
	groupID := g.ID()
	slots[0*simt.GroupSize+groupID] = regs[0][0]
	slots[1*simt.GroupSize+groupID] = regs[0][1]
	slots[2*simt.GroupSize+groupID] = regs[0][2]
	slots[3*simt.GroupSize+groupID] = regs[0][3]
	g.Sync()
	numGroups := g.NumGroups()
	for lane := range regs {
		if g.LaneIndex(lane) < numGroups {
			regs[lane] = Vec4{slots[0*simt.GroupSize+lane], slots[1*simt.GroupSize+lane], slots[2*simt.GroupSize+lane], slots[3*simt.GroupSize+lane]}
		} else {
			regs[lane] = Vec4{0, 0, 0, 0}
		}
	}
	GroupReduceSum4(regs)
}

// BlockAllReduceSum4 is BlockAllReduce[SumOp, Vec4] specialized.
func BlockAllReduceSum4(g *simt.Group, regs *[simt.GroupSize]Vec4, staging *Staging[Vec4]) {
	BlockReduceSum4(g, regs, staging)
	broadcast := staging.slots[4*simt.GroupSize:]
	if g.IsFirst() {
		broadcast[0] = regs[0][0]
		broadcast[1] = regs[0][1]
		broadcast[2] = regs[0][2]
		broadcast[3] = regs[0][3]
	}
	g.Sync()
	value := Vec4{broadcast[0], broadcast[1], broadcast[2], broadcast[3]}
	for lane := range regs {
		regs[lane] = value
	}
}

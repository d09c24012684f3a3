package engine

import (
	"github.com/XeonPhiNexus/yask/internal/indices"
)

// calcNanoBlockOpt computes one nano-block by sub-dividing it into full
// vector-clusters, full vectors, and masked partial vectors, then invoking
// the generated kernels on each piece.
//
//	2D example:
//	+--------------------+
//	|                    |
//	|  +--------------+  |
//	|  |              |  |
//	|  |   +------+   |  |
//	|  |   |   <------------ full clusters (multiple vectors)
//	|  |   |      |   |  |
//	|  |   +------+  <------ full (unmasked, single) vectors
//	|  |              |  |
//	|  +--------------+ <--- partial (masked, single) vectors (peel/rem)
//	|                    |
//	+--------------------+
//
// In each domain dim the element range [ebgn, eend) is bracketed by three
// nested vector-aligned ranges: full clusters [fcbgn, fcend), full vectors
// [fvbgn, fvend) (rounded inward), and the outer vector cover
// [ovbgn, ovend) (rounded outward). The gaps between them are the peel and
// remainder regions handled with lane masks.
func (b *Bundle) calcNanoBlockOpt(outThr, inThr int, microIdxs indices.ScanIndices) {
	d := b.ctx.dims
	nddims := d.NumDomainDims()
	log := b.ctx.log

	log.Debug("Nano-block.",
		"bundle", b.Name(), "range", microIdxs.RangeStr(true),
		"outThr", outThr, "inThr", inThr)

	// Nano-block bounds from the parent's current tile. These are in
	// element units and global (NOT rank-relative). All other index sets
	// below derive from sbIdxs so the step dim is carried through.
	sbIdxs := microIdxs.CreateInner()

	// Strides within a nano-block are pico-block sizes.
	sbIdxs.SetStridesFromInner(b.ctx.picoSizes, 1)
	sbIdxs.TileSize = b.ctx.nanoTileSizes.Clone()

	// Element-granular bounds, rank-relative.
	sbEidxs := sbIdxs.Clone()

	// Subset that is full clusters.
	sbFcidxs := sbIdxs.Clone()

	// Subset that is full vectors.
	sbFvidxs := sbIdxs.Clone()

	// Superset rounded out to vector boundaries.
	sbOvidxs := sbIdxs.Clone()

	// These become rank-relative, so clear the alignment offsets.
	sbEidxs.AlignOfs.SetFromConst(0)
	sbFcidxs.AlignOfs.SetFromConst(0)
	sbFvidxs.AlignOfs.SetFromConst(0)
	sbOvidxs.AlignOfs.SetFromConst(0)

	doClusters := true
	doOutsideClusters := false

	// Per-dim flag sets for full and partial vectors on each side.
	var doLeftFvecs, doRightFvecs, doLeftPvecs, doRightPvecs indices.BitMask

	// Lane masks for partial vectors in each dim; zero means none needed.
	peelMasks := make([]indices.BitMask, nddims)
	remMasks := make([]indices.BitMask, nddims)

	for j := 0; j < nddims; j++ {
		i := j + 1

		rofs := b.ctx.rankOfs[j]
		ebgn := sbIdxs.Begin[i] - rofs
		eend := sbIdxs.End[i] - rofs

		// Range of full clusters; also the inner boundary of the full
		// vectors. fcbgn > fcend is legal and means the nano-block sits
		// inside one cluster.
		cpts := d.ClusterPts[j]
		fcbgn := indices.RoundUpFlr(ebgn, cpts)
		fcend := indices.RoundDownFlr(eend, cpts)

		// Range of full vectors; also the inner boundary of the peel and
		// remainder sections.
		vpts := d.FoldPts[j]
		fvbgn := indices.RoundUpFlr(ebgn, vpts)
		fvend := indices.RoundDownFlr(eend, vpts)

		// Outer vector-aligned cover: rounded away from the nano-block.
		ovbgn := indices.RoundDownFlr(ebgn, vpts)
		ovend := indices.RoundUpFlr(eend, vpts)
		if ovbgn > fvbgn || ovend < fvend {
			panic("(internal fault) outer vector cover inside full-vector range")
		}

		// Full vectors on either side only exist with cluster mults > 1.
		doLeftFvec := fvbgn < fcbgn
		doRightFvec := fvend > fcend

		doLeftPvec := ebgn < fvbgn
		doRightPvec := eend > fvend

		// Build this dim's peel and remainder masks by visiting every
		// lane of the fold: shift both masks down, then admit the lane
		// if its element falls inside the nano-block.
		var pmask, rmask indices.BitMask
		if doLeftPvec || doRightPvec {
			mbit := indices.BitMask(1) << (d.FoldNumLanes() - 1)
			indices.VisitAllPoints(d.FoldPts, d.FoldFirstInner,
				func(pt indices.Indices, idx int) bool {
					pmask >>= 1
					rmask >>= 1
					if ovbgn+pt[j] >= ebgn {
						pmask |= mbit
					}
					if fvend+pt[j] < eend {
						rmask |= mbit
					}
					return true
				})
		}

		// Peel and remainder share one vector: AND the masks and do a
		// single masked pass on the left.
		if doLeftPvec && doRightPvec && ovbgn == fvend {
			pmask &= rmask
			rmask = 0
			doLeftPvec = true
			doRightPvec = false
			doLeftFvec = false
			doRightFvec = false
			doClusters = false
		} else if fcend <= fcbgn {
			// No full clusters in this dim: collapse the cluster range
			// onto the full-vector end; any full-vector work shifts to
			// the left side only.
			fcbgn = fvend
			fcend = fvend
			doClusters = false
			if doLeftFvec || doRightFvec {
				doLeftFvec = true
				doRightFvec = false
			}
		}

		if doLeftFvec || doRightFvec || doLeftPvec || doRightPvec {
			doOutsideClusters = true
		}

		sbEidxs.Begin[i], sbEidxs.End[i] = ebgn, eend
		sbFcidxs.Begin[i], sbFcidxs.End[i] = fcbgn, fcend
		sbFvidxs.Begin[i], sbFvidxs.End[i] = fvbgn, fvend
		sbOvidxs.Begin[i], sbOvidxs.End[i] = ovbgn, ovend

		peelMasks[j] = pmask
		remMasks[j] = rmask
		if doLeftFvec {
			doLeftFvecs = indices.SetBit(doLeftFvecs, j)
		}
		if doRightFvec {
			doRightFvecs = indices.SetBit(doRightFvecs, j)
		}
		if doLeftPvec {
			doLeftPvecs = indices.SetBit(doLeftPvecs, j)
		}
		if doRightPvec {
			doRightPvecs = indices.SetBit(doRightPvecs, j)
		}
	}

	thrLimit := b.ctx.threadLimit

	normFcidxs := b.normalizeScan(sbFcidxs)

	if doClusters {
		log.Debug("Calculating clusters.",
			"bundle", b.Name(), "range", normFcidxs.RangeStr(false),
			"outThr", outThr, "inThr", inThr)
		b.calcClusters(outThr, inThr, thrLimit, normFcidxs)
	}

	if !doOutsideClusters {
		return
	}
	if d.ClusterNumPoints() == 1 {
		panic("(internal fault) vector border-code not expected with cluster-size==1")
	}

	normFvidxs := b.normalizeScan(sbFvidxs)
	normOvidxs := b.normalizeScan(sbOvidxs)

	// Walk every boundary part: for 2D, 4 edges then 4 corners; for 3D,
	// 6 faces, 12 edges, then 8 corners. Each part is a combo of k
	// selected dims and a left/right choice per selected dim.
	for k := 1; k <= nddims; k++ {
		ncombos := indices.NChooseK(nddims, k)
		nseqs := 1 << k

		for r := 0; r < ncombos; r++ {
			cdims := indices.NChooseKSet(nddims, k, r)

			for lr := 0; lr < nseqs; lr++ {
				// Non-selected dims keep the cluster-range bounds for full
				// vectors and the full-vector-range bounds for partial vectors.
				fvPart := normFcidxs.Clone()
				pvPart := normFvidxs.Clone()

				fvNeeded := true
				pvNeeded := true
				pvMask := ^indices.BitMask(0)

				nsel := 0
				for j := 0; j < nddims; j++ {
					if !indices.IsBitSet(cdims, j) {
						continue
					}
					i := j + 1
					isLeft := !indices.IsBitSet(indices.BitMask(lr), nsel)
					nsel++

					if isLeft {
						fvPart.Begin[i] = normFvidxs.Begin[i]
						fvPart.End[i] = normFcidxs.Begin[i]
						if !indices.IsBitSet(doLeftFvecs, j) {
							fvNeeded = false
						}
						pvPart.Begin[i] = normOvidxs.Begin[i]
						pvPart.End[i] = normFvidxs.Begin[i]
						pvMask &= peelMasks[j]
						if !indices.IsBitSet(doLeftPvecs, j) {
							pvNeeded = false
						}
					} else {
						fvPart.Begin[i] = normFcidxs.End[i]
						fvPart.End[i] = normFvidxs.End[i]
						if !indices.IsBitSet(doRightFvecs, j) {
							fvNeeded = false
						}
						pvPart.Begin[i] = normFvidxs.End[i]
						pvPart.End[i] = normOvidxs.End[i]
						pvMask &= remMasks[j]
						if !indices.IsBitSet(doRightPvecs, j) {
							pvNeeded = false
						}
					}
				}

				if fvNeeded {
					fvPart.Start = fvPart.Begin.Clone()
					fvPart.Stop = fvPart.End.Clone()
					log.Debug("Calculating full vectors.",
						"bundle", b.Name(), "range", fvPart.RangeStr(false))
					b.calcVectors(outThr, inThr, thrLimit, fvPart,
						indices.AllLanes(d.FoldNumLanes()))
				}
				if pvNeeded {
					pvPart.Start = pvPart.Begin.Clone()
					pvPart.Stop = pvPart.End.Clone()
					log.Debug("Calculating partial vectors.",
						"bundle", b.Name(), "range", pvPart.RangeStr(false),
						"mask", pvMask)
					b.calcVectors(outThr, inThr, thrLimit, pvPart, pvMask)
				}
			}
		}
	}
}

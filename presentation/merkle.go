package presentation

import (
	"errors"
	"fmt"
	"sort"
)

// MerkleProof proves a set of leaves against a binary merkle root. Parent
// nodes are H(left || right); an unpaired last node is promoted unchanged.
// Hashes lists the missing siblings in bottom-up, left-to-right order.
type MerkleProof struct {
	Alg     HashAlgID
	TreeLen int
	Hashes  []Hash
}

func decodeMerkleProof(d *decoder) MerkleProof {
	p := MerkleProof{Alg: HashAlgID(d.u8()), TreeLen: d.usize()}
	n := d.seqLen(8)
	for i := 0; i < n && d.err == nil; i++ {
		p.Hashes = append(p.Hashes, decodeHash(d))
	}
	return p
}

func (p MerkleProof) encode(e *encoder) {
	e.u8(uint8(p.Alg))
	e.usize(p.TreeLen)
	e.seqLen(len(p.Hashes))
	for _, h := range p.Hashes {
		h.encode(e)
	}
}

type merkleNode struct {
	index int
	hash  Hash
}

func hashPair(h Hasher, left, right Hash) Hash {
	buf := make([]byte, 0, len(left)+len(right))
	buf = append(buf, left...)
	buf = append(buf, right...)
	return h.Hash(buf)
}

func sortLeaves(leaves []merkleNode, treeLen int) ([]merkleNode, error) {
	if len(leaves) == 0 {
		return nil, errors.New("no leaves to prove")
	}
	out := append([]merkleNode(nil), leaves...)
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	for i, n := range out {
		if n.index < 0 || n.index >= treeLen {
			return nil, fmt.Errorf("leaf index %d outside tree of %d leaves", n.index, treeLen)
		}
		if i > 0 && out[i-1].index == n.index {
			return nil, fmt.Errorf("duplicate leaf index %d", n.index)
		}
	}
	return out, nil
}

// verify checks that leaves, together with the proof hashes, reproduce root.
func (p MerkleProof) verify(h Hasher, root Hash, leaves []merkleNode) error {
	if h.ID() != p.Alg {
		return fmt.Errorf("merkle proof uses %s, expected %s", p.Alg, h.ID())
	}
	if p.TreeLen <= 0 {
		return errors.New("empty merkle tree")
	}
	layer, err := sortLeaves(leaves, p.TreeLen)
	if err != nil {
		return err
	}
	proof := p.Hashes
	next := func() (Hash, error) {
		if len(proof) == 0 {
			return nil, errors.New("merkle proof is missing hashes")
		}
		v := proof[0]
		proof = proof[1:]
		return v, nil
	}

	for width := p.TreeLen; width > 1; width = (width + 1) / 2 {
		parents := make([]merkleNode, 0, len(layer))
		for i := 0; i < len(layer); i++ {
			n := layer[i]
			var parent Hash
			switch {
			case n.index%2 == 1:
				sib, err := next()
				if err != nil {
					return err
				}
				parent = hashPair(h, sib, n.hash)
			case i+1 < len(layer) && layer[i+1].index == n.index+1:
				parent = hashPair(h, n.hash, layer[i+1].hash)
				i++
			case n.index+1 >= width:
				parent = n.hash
			default:
				sib, err := next()
				if err != nil {
					return err
				}
				parent = hashPair(h, n.hash, sib)
			}
			parents = append(parents, merkleNode{index: n.index / 2, hash: parent})
		}
		layer = parents
	}
	if len(proof) != 0 {
		return fmt.Errorf("merkle proof has %d unused hashes", len(proof))
	}
	if !layer[0].hash.Equal(root) {
		return errors.New("merkle root mismatch")
	}
	return nil
}

// MerkleTree is a fully materialized tree, used to compute roots and build
// proofs over committed leaves.
type MerkleTree struct {
	hasher Hasher
	layers [][]Hash
}

func NewMerkleTree(h Hasher, leaves []Hash) *MerkleTree {
	t := &MerkleTree{hasher: h, layers: [][]Hash{append([]Hash(nil), leaves...)}}
	for cur := t.layers[0]; len(cur) > 1; {
		next := make([]Hash, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 < len(cur) {
				next = append(next, hashPair(h, cur[i], cur[i+1]))
			} else {
				next = append(next, cur[i])
			}
		}
		t.layers = append(t.layers, next)
		cur = next
	}
	return t
}

func (t *MerkleTree) Root() Hash {
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return nil
	}
	return top[0]
}

// Proof builds a proof for the given leaf indices.
func (t *MerkleTree) Proof(indices []int) MerkleProof {
	known := append([]int(nil), indices...)
	sort.Ints(known)
	p := MerkleProof{Alg: t.hasher.ID(), TreeLen: len(t.layers[0])}
	for _, layer := range t.layers[:len(t.layers)-1] {
		parents := make([]int, 0, len(known))
		for i := 0; i < len(known); i++ {
			idx := known[i]
			switch {
			case idx%2 == 1:
				p.Hashes = append(p.Hashes, layer[idx-1])
			case i+1 < len(known) && known[i+1] == idx+1:
				i++
			case idx+1 >= len(layer):
			default:
				p.Hashes = append(p.Hashes, layer[idx+1])
			}
			parents = append(parents, idx/2)
		}
		known = parents
	}
	return p
}

/*
Package domain contains the core decision-tree model of sapling.

It defines the immutable tree representation, the pre-order descriptor arena
used for pacing reveals, and the classification trace produced by a
classifier. The package is kept pure and free of I/O so that decoders,
aligners and schedulers can share trees without synchronization.

# Key Entities

  - Node: a split (feature, threshold, two children) or a leaf (label).
  - Tree: a root node plus its descriptors in pre-order discovery order.
  - Descriptor: the flat, ranked view of one node used for build pacing.
  - Step / DecisionPath: the ordered trace of one classification.
*/
package domain

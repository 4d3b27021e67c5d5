/*
Package sapling renders the life of a binary decision-tree classifier for a
human observer: it decodes a tree, replays its construction node by node, and
plays back the exact decision path taken for each classified input.

# Concept

The engine holds the tree of the current model and two independent reveal
machines. Loading a model starts a construction reveal; classifying an input
starts a path playback. Each machine advances a cursor on a fixed cadence and
is cancelled outright when a new request of the same kind arrives, so two
reveals of the same kind never interleave.

Classification itself is delegated to a ports.Classifier (a remote service or
the in-process evaluator). Traces that carry node identities are aligned by
rank; older traces fall back to feature/threshold matching with a 1e-4
tolerance.

# Usage

	eng := sapling.New(
		sapling.WithClassifier(memory.NewClassifier()),
	)
	defer eng.Close()

	ctx := context.Background()
	tree, err := eng.LoadModel(ctx, "Feature: call\nThreshold: 0.034\nham\nspam\n")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tree.Count()) // 3

	res, err := eng.Classify(ctx, "call me now")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Label) // spam

	// Drive a UI from eng.Construction() and eng.Playback().
*/
package sapling

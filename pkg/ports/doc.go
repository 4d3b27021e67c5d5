/*
Package ports defines the driven ports (interfaces) of the sapling engine.

These interfaces decouple the core from the classifier service and from the
storage backend that keeps the model of a session.

# Key Interfaces

  - Classifier: classifies text and exposes the service's current tree.
  - ModelUploader: optional; pushes a model file to the classifier service.
  - ModelStore: keeps the canonical model text of a session (memory, Redis).
  - DistributedLocker: serialises model loads across replicas sharing a session.
*/
package ports

/*
Package ports defines the driven ports (interfaces) for the pipeline engine.

These interfaces decouple the recipe executor from the machinery that talks to
external computation engines, so the same compiled recipe can run against a
real ADAM monolith, an MCP tool server, or a scripted fake in tests.

# Key Interfaces

  - TaskDispatcher: the four operations primitives perform against engines.
  - ProtoSession / ProtoConn: a protocol family and one live engine connection.
  - ProtocolRegistry: hands out initialized protocol sessions by name.
  - EventSink: receives display events emitted while a recipe runs.
*/
package ports

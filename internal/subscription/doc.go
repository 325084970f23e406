// Package subscription implements the symbol admission controller.
//
// The Manager tracks which symbols occupy a fixed number of stream
// subscription slots. Admission is priority-based: when the slot set is full,
// a new symbol displaces the lowest-priority incumbent only if its own
// priority is strictly greater. Bulk requests are planned and executed as a
// single locked operation via PlanAndExecute.
package subscription

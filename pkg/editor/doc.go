/*
Package editor applies typed actions to booking form data.

Reduce is a pure function from (data, action) to data. It never mutates its
input and shares untouched subtrees with it, so callers can keep previous
versions around for undo or diffing at no extra cost.

	data = editor.Reduce(data, editor.AddNode{ParentID: "root", Node: svc})
	data = editor.Reduce(data, editor.ReorderNodes{ParentID: "root", NewOrder: ids})

Actions travel over the wire as {"type": "ADD_NODE", "payload": {...}}; see
MarshalAction and UnmarshalAction.
*/
package editor

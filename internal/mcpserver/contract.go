package mcpserver

// TreeFormatContract describes the JSON payloads returned by the tree
// tools and the HTTP tree endpoints.
const TreeFormatContract = `# schemaview Tree Format Contract

A tree is a lazily populated view over one JSON Schema document. Nodes are
created only for the levels that are visible; $ref nodes stay collapsed
until they are unwrapped.

## Tree

` + "```" + `json
{
  "id": "0b9c...",             // tree id, pass to unwrap_node / list_properties
  "schema_path": "line.json",
  "expanded_depth": 1,
  "limit_property_count": 100, // absent when listings are unbounded
  "root": 0,
  "rows": [ <node>, ... ]      // visible nodes in display order
}
` + "```" + `

## Node

` + "```" + `json
{
  "id": 3,
  "name": "start",             // property key, "#" for a document root,
                               // keyword[index] for allOf/anyOf/oneOf branches
  "path": "#/properties/start",// JSON Pointer of the fragment in its document
  "document": "point.json",    // catalog path of that document, absent for
                               // the tree's own schema
  "depth": 1,
  "kind": "ref",               // "regular" or "ref"
  "ref": "point.json",         // only for ref nodes
  "types": ["object"],
  "title": "...", "description": "...", "format": "...",
  "combiners": ["oneOf"],
  "required": true,
  "merged": true,              // allOf branches folded into this node
  "expandable": true,          // the node can have children
  "expanded": false,           // its children are shown in rows
  "loaded": false              // its children exist
}
` + "```" + `

## Rules

1. **Node ids are handles.** They are valid only for the tree that returned
   them and only until the tree is rebuilt (a tree.invalidated event).
2. **Unwrap is idempotent.** Unwrapping a loaded node returns its existing
   children.
3. **Unwrapping a ref** adds one child: the referenced fragment, named by
   its path in the target document. References inside a fragment are read
   relative to that fragment's document.
4. **Failures** are reported with a kind:
   - ` + "`" + `unresolved_reference` + "`" + `: the $ref target is missing or not an object.
   - ` + "`" + `null_reference` + "`" + `: the node has a $ref that is not a string.
   - ` + "`" + `empty_expansion` + "`" + `: the fragment has nothing to show.
5. **Property listings** stop at limit_property_count and set
   ` + "`" + `is_overflow` + "`" + ` when more properties exist.
`

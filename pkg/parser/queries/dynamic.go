package queries

// DynamicImportQuery matches `import("literal")` calls anywhere in a file.
// Both grammars expose the same shape, so one pattern serves TS, TSX and JS.
//
// Captures:
//   - @dynamic.call   - the call_expression
//   - @dynamic.source - the string fragment inside the literal
//
// Template literals and computed arguments are not matched; the engine can
// only follow specifiers it can read statically.
const DynamicImportQuery = `
(call_expression
  function: (import)
  arguments: (arguments
    (string (string_fragment) @dynamic.source))
) @dynamic.call
`

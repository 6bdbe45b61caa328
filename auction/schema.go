package auction

// ImportSchema validates a bulk-import document before any auction is
// created. Both the HTTP import endpoint and the CLI importer check
// against it. Additional properties are allowed so an export can be fed
// straight back in; server-derived fields are simply ignored on import.
const ImportSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["auctions"],
  "properties": {
    "auctions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "duration_hours"],
        "properties": {
          "title": {"type": "string", "minLength": 1, "maxLength": 200},
          "description": {"type": "string", "maxLength": 2000},
          "token_ref": {"type": "string", "maxLength": 200},
          "start_time": {"type": "integer", "minimum": 0},
          "duration_hours": {"type": "number", "exclusiveMinimum": 0},
          "grace_seconds": {"type": "integer", "minimum": 0, "maximum": 3600},
          "min_increment": {"type": "number", "minimum": 0},
          "created_by": {"type": "string", "maxLength": 200}
        }
      }
    }
  }
}`

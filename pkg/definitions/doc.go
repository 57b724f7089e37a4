// Package definitions loads process definitions from JSON or YAML documents.
//
// A document lists processes, each with an optional start form, its user tasks,
// the task keys activated when an instance starts, and the task keys activated
// when a given task completes:
//
//	processes:
//	  - key: invoice
//	    version: 1
//	    name: Invoice
//	    startForm:
//	      key: invoice-start
//	      properties:
//	        - id: customer
//	          required: true
//	        - id: currency
//	          type: enum
//	          values: [{id: EUR}, {id: USD}]
//	          default: EUR
//	    firstTasks: [approve]
//	    tasks:
//	      - key: approve
//	        form:
//	          key: invoice-approve
//	          properties:
//	            - id: decision
//	              type: enum
//	              values: [{id: approve}, {id: reject}]
//	        next: [archive]
//	      - key: archive
//
// Properties default to writable and readable. The loaded Store satisfies
// process.DefinitionRepository so forms can be resolved straight from files.
package definitions

// Package catalog compiles host-authored component and action catalogs and
// validates element props and action params against them.
//
// Catalogs are written in CUE:
//
//	catalog: {
//		name: "dashboard"
//		components: Card: {
//			description: "A titled container"
//			slots: ["default"]
//			props: {
//				title:        string
//				description?: string | null
//			}
//		}
//		actions: save_changes: {
//			params: documentId: string
//		}
//	}
//
// A component or action without a props/params schema accepts any object.
// In strict mode, fields the schema does not declare are rejected.
// A compiled Catalog is immutable and safe for concurrent use.
package catalog

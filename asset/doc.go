// Package asset decodes vector animation documents and runs their scenes.
//
// A document holds one or more artboards. An artboard is a fixed-size
// canvas with shapes, keyframed animations, state machines that switch
// between animations in response to inputs, and an optional view model
// whose properties can drive shape properties directly.
//
// Documents are YAML:
//
//	version: 1
//	artboards:
//	  - name: Main
//	    width: 400
//	    height: 300
//	    default: true
//	    background: "#101820"
//	    shapes:
//	      - {name: ball, kind: ellipse, x: 200, y: 150, width: 60, height: 60, fill: "#f2aa4c"}
//	    animations:
//	      - name: bounce
//	        duration: 1
//	        loop: pingpong
//	        tracks:
//	          - target: ball.y
//	            keys: [{time: 0, value: 60}, {time: 1, value: 240, interp: ease}]
//	    stateMachines:
//	      - name: Controller
//	        inputs:
//	          - {name: bouncing, type: bool}
//	        states:
//	          - {name: idle}
//	          - {name: bounce, animation: bounce}
//	        transitions:
//	          - {from: idle, to: bounce, when: [{input: bouncing, op: "==", value: true}]}
//	          - {from: bounce, to: idle, when: [{input: bouncing, op: "==", value: false}]}
//	    viewModel:
//	      name: Ball
//	      properties:
//	        - {name: size, type: number, value: 60, bind: ball.width}
//
// [Load] reads and validates a document, [Asset.DefaultArtboard] picks the
// root scene and [Artboard.Instantiate] creates a mutable [Instance].
//
// Instances are not safe for concurrent use.
package asset
